package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"ucliu/internal/config"
	"ucliu/internal/dictionary"
	"ucliu/internal/ime"
	"ucliu/internal/logging"
	"ucliu/internal/overlay"
)

// DictCmd groups the dictionary commands.
type DictCmd struct {
	Check  DictCheckCmd  `cmd:"" help:"Validate both dictionaries against their schema and report their size."`
	Lookup DictLookupCmd `cmd:"" help:"Show the candidates for codes."`
	Add    DictAddCmd    `cmd:"" help:"Add words to the custom dictionary."`
	Remove DictRemoveCmd `cmd:"" help:"Remove a word, or a whole code, from the custom dictionary."`
}

// DictPaths resolves the dictionary files from flags and configuration.
type DictPaths struct {
	Dictionary DictionaryFlags `embed:"" prefix:"dictionary."`
}

func (p DictPaths) resolve(cfg *config.Config) config.DictionaryConfig {
	dc := cfg.Dictionary
	if p.Dictionary.Path != "" {
		dc.Path = p.Dictionary.Path
	}
	if p.Dictionary.CustomPath != "" {
		dc.CustomPath = p.Dictionary.CustomPath
	}
	return dc
}

// DictCheckCmd validates and loads the dictionaries.
type DictCheckCmd struct {
	DictPaths
}

func (c *DictCheckCmd) Run(cfg *config.Config, logger *logging.Logger) error {
	return c.run(c.resolve(cfg), os.Stdout)
}

func (c *DictCheckCmd) run(dc config.DictionaryConfig, out io.Writer) error {
	table, err := dictionary.LoadFile(dc.Path, true)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "main:   %s (%d entries)\n", dc.Path, len(table))

	var custom []dictionary.Entry
	if dc.CustomPath != "" {
		custom, err = dictionary.LoadCustom(dc.CustomPath, true)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "custom: %s (%d codes)\n", dc.CustomPath, len(custom))
	}

	base := dictionary.New(table)
	merged := dictionary.Merge(base, custom...)
	fmt.Fprintf(out, "merged: %d codes, %d added by the custom dictionary\n", merged.Len(), merged.Len()-base.Len())
	return nil
}

// DictLookupCmd prints candidates.
type DictLookupCmd struct {
	DictPaths

	Codes  []string `arg:"" help:"Codes to look up."`
	Prefix bool     `help:"List the codes starting with each argument instead."`
	Limit  int      `help:"Maximum codes listed per prefix." default:"20"`
}

func (c *DictLookupCmd) Run(cfg *config.Config, logger *logging.Logger) error {
	dict, err := loadDictionary(c.resolve(cfg))
	if err != nil {
		return err
	}
	return c.run(dict, os.Stdout)
}

func (c *DictLookupCmd) run(dict *dictionary.Dictionary, out io.Writer) error {
	missing := 0
	for _, code := range c.Codes {
		code = strings.ToLower(code)
		if c.Prefix {
			for _, k := range dict.WithPrefix(code, c.Limit) {
				fmt.Fprintf(out, "%-5s %s\n", k, formatCandidates(dict, k))
			}
			continue
		}
		if _, ok := dict.Lookup(code); !ok {
			fmt.Fprintf(out, "%-5s (none)\n", code)
			missing++
			continue
		}
		fmt.Fprintf(out, "%-5s %s\n", code, formatCandidates(dict, code))
	}
	if missing == len(c.Codes) && !c.Prefix {
		return errors.New("no code found")
	}
	return nil
}

// formatCandidates numbers the candidates the way the overlay labels them,
// page by page.
func formatCandidates(dict *dictionary.Dictionary, code string) string {
	cands, _ := dict.Lookup(code)
	cells := make([]string, len(cands))
	for i, c := range cands {
		cells[i] = overlay.Label(i%ime.PageSize) + "." + c
	}
	return strings.Join(cells, " ")
}

// DictAddCmd adds words to the custom dictionary.
type DictAddCmd struct {
	DictPaths

	Code  string   `arg:"" help:"Code of up to five letters or , . ] [ '."`
	Words []string `arg:"" help:"Words to add, in order."`
}

func (c *DictAddCmd) Run(cfg *config.Config, logger *logging.Logger) error {
	dc := c.resolve(cfg)
	if err := c.run(dc.CustomPath); err != nil {
		return err
	}
	logger.Info("custom dictionary updated", "path", dc.CustomPath, "words", len(c.Words))
	fmt.Printf("added %d word(s) under %q to %s\n", len(c.Words), strings.ToLower(c.Code), dc.CustomPath)
	return nil
}

func (c *DictAddCmd) run(path string) error {
	if path == "" {
		return errors.New("no custom dictionary configured (dictionary.custom_path)")
	}
	custom, err := dictionary.OpenCustom(path)
	if err != nil {
		return err
	}
	for _, w := range c.Words {
		if err := custom.Add(c.Code, w); err != nil {
			return err
		}
	}
	return custom.Save(path)
}

// DictRemoveCmd removes from the custom dictionary.
type DictRemoveCmd struct {
	DictPaths

	Code string `arg:"" help:"Code to edit."`
	Word string `arg:"" optional:"" help:"Word to remove. Without it the whole code goes."`
}

func (c *DictRemoveCmd) Run(cfg *config.Config, logger *logging.Logger) error {
	dc := c.resolve(cfg)
	if err := c.run(dc.CustomPath); err != nil {
		return err
	}
	logger.Info("custom dictionary updated", "path", dc.CustomPath)
	fmt.Printf("removed from %s\n", dc.CustomPath)
	return nil
}

func (c *DictRemoveCmd) run(path string) error {
	if path == "" {
		return errors.New("no custom dictionary configured (dictionary.custom_path)")
	}
	custom, err := dictionary.OpenCustom(path)
	if err != nil {
		return err
	}
	if !custom.Remove(c.Code, c.Word) {
		return fmt.Errorf("%q not found in %s", c.Code, path)
	}
	return custom.Save(path)
}
