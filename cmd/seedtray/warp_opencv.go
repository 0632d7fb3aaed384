//go:build opencv

package main

import (
	"github.com/menta2k/seedtray-annotator/pkg/rectify/cvwarp"
)

func init() {
	defaultWarper = cvwarp.New()
}
