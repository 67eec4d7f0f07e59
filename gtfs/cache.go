package gtfs

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"
)

// SerializeGraph encodes a StopGraph with gob.
func SerializeGraph(g *StopGraph) ([]byte, error) {
	var buf bytes.Buffer
	if err := SaveGraphToWriter(g, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveGraphToWriter writes a StopGraph to w using gob encoding.
func SaveGraphToWriter(g *StopGraph, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(g); err != nil {
		return fmt.Errorf("failed to encode StopGraph: %w", err)
	}
	return nil
}

// LoadGraphFromReader reads a StopGraph written by SaveGraphToWriter.
func LoadGraphFromReader(r io.Reader) (*StopGraph, error) {
	var g StopGraph
	if err := gob.NewDecoder(r).Decode(&g); err != nil {
		return nil, fmt.Errorf("failed to decode StopGraph: %w", err)
	}
	if g.Nodes == nil {
		g.Nodes = map[string]Stop{}
	}
	if g.Edges == nil {
		g.Edges = map[string]map[string]Edge{}
	}
	return &g, nil
}

// SaveGraphToFile writes a StopGraph to path.
//
// Example:
//
//	g, _ := gtfs.LoadGraph("data/gtfs_dublin.zip", gtfs.GraphOptions{})
//	if err := gtfs.SaveGraphToFile(g, "data/graph.gob"); err != nil {
//	    // handle error
//	}
func SaveGraphToFile(g *StopGraph, path string) error {
	data, err := SerializeGraph(g)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadGraphFromFile reads a StopGraph saved by SaveGraphToFile.
func LoadGraphFromFile(path string) (*StopGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadGraphFromReader(f)
}
