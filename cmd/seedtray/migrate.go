package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/menta2k/seedtray-annotator/internal/utils"
)

func migrateCommand(a *app) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "migrate <record.json|dir>...",
		Short: "Rewrite saved records with integer codes as label strings",
		Long: `Load annotation records, converting legacy integer-coded grids through the
configured vocabulary. Without --write the migrated record is printed.
Directories are scanned for .json files.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := recordPaths(args)
			if err != nil {
				return err
			}

			failed := 0
			for _, path := range paths {
				if err := a.migrateFile(cmd, path, write); err != nil {
					a.logger.Error("migration failed", "path", path, "error", err)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d records failed to migrate", failed, len(paths))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&write, "write", false, "rewrite files in place")
	return cmd
}

func recordPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		found, err := utils.ListFiles(arg, utils.IsRecordFile)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return paths, nil
}

func (a *app) migrateFile(cmd *cobra.Command, path string, write bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	rec, g, err := a.annotator.ParseRecord(data)
	if err != nil {
		return err
	}
	migrated, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	if !write {
		out(cmd, "%s", migrated)
		return nil
	}
	if err := os.WriteFile(path, append(migrated, '\n'), 0644); err != nil {
		return err
	}
	out(cmd, "%s: %s, %d/%d germinated", path, g.Spec(), rec.GerminationCount, g.Spec().Cells())
	return nil
}
