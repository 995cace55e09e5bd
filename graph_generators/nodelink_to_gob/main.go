// Command nodelink_to_gob converts an OSMnx node-link JSON export into the
// gob snapshot read by NETWORK_SOURCE=file.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"flood-route-server/network"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: nodelink_to_gob <input_json_file> [output_gob_file]")
		os.Exit(1)
	}

	inputPath := os.Args[1]
	if err := run(inputPath, outputPathFor(inputPath, os.Args[2:])); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func outputPathFor(inputPath string, rest []string) string {
	if len(rest) > 0 {
		return rest[0]
	}
	ext := filepath.Ext(inputPath)
	base := strings.TrimSuffix(filepath.Base(inputPath), ext)
	return filepath.Join(filepath.Dir(inputPath), base+".gob")
}

func run(inputPath, outputPath string) error {
	g, err := network.LoadGraphFile(inputPath)
	if err != nil {
		return err
	}
	if err := network.SaveSnapshot(outputPath, g); err != nil {
		return err
	}

	fmt.Printf("Successfully converted %s to %s\n", inputPath, outputPath)
	fmt.Printf("Nodes: %d, Edges: %d\n", g.NodeCount(), g.EdgeCount())
	return nil
}
