/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: schema.go
Description: check-schema and offset commands. Both only read the schema (and for offset the
head of one file) so they are cheap ways to debug a schema before a full analysis.
*/

package commands

import (
	"fmt"
	"strings"

	"github.com/kleascm/bitlayout-analyzer/pkg/offset"
	"github.com/kleascm/bitlayout-analyzer/pkg/schema"
	"github.com/spf13/cobra"
)

// RunCheckSchema validates a schema and prints its layout
func RunCheckSchema(cmd *cobra.Command, args []string) error {
	logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	s, err := loadSchema(args[0], logger)
	if err != nil {
		return err
	}

	fmt.Printf("✅ %s is valid\n", args[0])
	if s.Metadata.Name != "" {
		fmt.Printf("📋 %s", s.Metadata.Name)
		if s.Metadata.Description != "" {
			fmt.Printf(" - %s", s.Metadata.Description)
		}
		fmt.Println()
	}
	fmt.Printf("   record: %d bits (%d bytes), file bit order %s\n", s.TotalBits(), s.TotalBytes(), s.BitOrder)

	fmt.Println("\n🧱 Fields:")
	for _, leaf := range s.Leaves() {
		var flags []string
		if len(leaf.Field.SkipIfNot) > 0 {
			flags = append(flags, fmt.Sprintf("skip_if_not(%d)", len(leaf.Field.SkipIfNot)))
		}
		if leaf.SkipFrequencyAnalysis {
			flags = append(flags, "no-frequency")
		}
		fmt.Printf("   %s%-*s @%-4d %2d bits  %s  %s\n",
			strings.Repeat("  ", leaf.Depth), 24-2*leaf.Depth, leaf.Name,
			leaf.Offset, leaf.Field.BitWidth(), leaf.Field.BitOrder, strings.Join(flags, " "))
	}

	if len(s.ConditionalOffsets) > 0 {
		fmt.Println("\n📍 Conditional offsets:")
		for _, co := range s.ConditionalOffsets {
			fmt.Printf("   0x%x when %d condition(s) hold\n", co.Offset, len(co.Conditions))
		}
	}

	if len(s.Analysis.SplitGroups) > 0 {
		fmt.Println("\n🔀 Split comparisons:")
		for _, split := range s.Analysis.SplitGroups {
			fmt.Printf("   %s: [%s] vs [%s]\n", split.Name,
				strings.Join(split.Group1, ", "), strings.Join(split.Group2, ", "))
		}
	}
	if len(s.Analysis.CompareGroups) > 0 {
		fmt.Println("\n🔀 Custom comparisons:")
		for _, cmp := range s.Analysis.CompareGroups {
			names := make([]string, 0, len(cmp.Comparisons))
			for _, l := range cmp.Comparisons {
				names = append(names, l.Name)
			}
			fmt.Printf("   %s: baseline uses %s; layouts %s\n", cmp.Name,
				strings.Join(schema.ReferencedFields(cmp.Baseline), ", "), strings.Join(names, ", "))
		}
	}
	return nil
}

// RunOffset prints the data start a schema resolves to for a file
func RunOffset(cmd *cobra.Command, args []string) error {
	logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	s, err := loadSchema(args[0], logger)
	if err != nil {
		return err
	}
	if len(s.ConditionalOffsets) == 0 {
		fmt.Println("⚠️  Schema declares no conditional offsets")
		return nil
	}

	start, matched, err := offset.TryEvaluateFile(s.ConditionalOffsets, args[1])
	if err != nil {
		return err
	}
	logger.LogOffsetResolved(args[1], start, matched)
	if !matched {
		fmt.Printf("❌ No conditional offset matches %s\n", args[1])
		return nil
	}
	fmt.Printf("📍 %s: data starts at %d (0x%x)\n", args[1], start, start)
	return nil
}
