package gtfs

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
)

// GraphOptions narrows what LoadGraph keeps.
type GraphOptions struct {
	// RoutePrefix keeps only trips whose route_id starts with it.
	// Empty keeps every trip.
	RoutePrefix string
}

var requiredFiles = []string{"stops.txt", "trips.txt", "stop_times.txt"}

// LoadGraph opens a local GTFS zip and builds its stop graph. A missing file
// yields an error wrapping fs.ErrNotExist.
func LoadGraph(path string, opts GraphOptions) (*StopGraph, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("GTFS file not found: %s: %w", path, err)
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open GTFS archive %s: %w", path, err)
	}
	defer func() { _ = zr.Close() }()
	return buildGraph(&zr.Reader, opts)
}

// LoadGraphFromBytes builds a stop graph from GTFS zip bytes.
func LoadGraphFromBytes(data []byte, opts GraphOptions) (*StopGraph, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open GTFS archive: %w", err)
	}
	return buildGraph(zr, opts)
}

type stopTime struct {
	stop string
	seq  int
}

func buildGraph(zr *zip.Reader, opts GraphOptions) (*StopGraph, error) {
	files := map[string]*zip.File{}
	for _, f := range zr.File {
		files[strings.ToLower(path.Base(f.Name))] = f
	}
	for _, name := range requiredFiles {
		if _, ok := files[name]; !ok {
			return nil, fmt.Errorf("GTFS archive missing %s", name)
		}
	}

	g := newStopGraph()
	err := consumeCSV(files["stops.txt"], []string{"stop_id"}, func(col func(string) string) {
		id := col("stop_id")
		g.Nodes[id] = Stop{
			ID:   id,
			Name: col("stop_name"),
			Lat:  parseCoord(col("stop_lat")),
			Lon:  parseCoord(col("stop_lon")),
		}
	})
	if err != nil {
		return nil, err
	}

	tripRoute := map[string]string{}
	err = consumeCSV(files["trips.txt"], []string{"trip_id", "route_id"}, func(col func(string) string) {
		tripRoute[col("trip_id")] = col("route_id")
	})
	if err != nil {
		return nil, err
	}

	byTrip := map[string][]stopTime{}
	err = consumeCSV(files["stop_times.txt"], []string{"trip_id", "stop_id", "stop_sequence"}, func(col func(string) string) {
		trip := col("trip_id")
		if opts.RoutePrefix != "" && !strings.HasPrefix(tripRoute[trip], opts.RoutePrefix) {
			return
		}
		seq, err := strconv.Atoi(strings.TrimSpace(col("stop_sequence")))
		if err != nil {
			return
		}
		byTrip[trip] = append(byTrip[trip], stopTime{stop: col("stop_id"), seq: seq})
	})
	if err != nil {
		return nil, err
	}

	// Later trips in id order overwrite earlier ones on a shared stop pair.
	trips := make([]string, 0, len(byTrip))
	for trip := range byTrip {
		trips = append(trips, trip)
	}
	sort.Strings(trips)
	for _, trip := range trips {
		seq := byTrip[trip]
		sort.SliceStable(seq, func(i, j int) bool { return seq[i].seq < seq[j].seq })
		for i := 0; i+1 < len(seq); i++ {
			g.addEdge(seq[i].stop, seq[i+1].stop, trip)
		}
	}
	return g, nil
}

// consumeCSV streams the rows of f to fn. col returns the named column of
// the current row, or "" when the column or cell is absent.
func consumeCSV(f *zip.File, required []string, fn func(col func(string) string)) error {
	r, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer func() { _ = r.Close() }()

	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1
	csvr.ReuseRecord = true
	head, err := csvr.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: empty file", f.Name)
	}
	if err != nil {
		return fmt.Errorf("%s: read header: %w", f.Name, err)
	}

	idx := make(map[string]int, len(head))
	for i, h := range head {
		h = strings.TrimPrefix(h, "\ufeff")
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range required {
		if _, ok := idx[c]; !ok {
			return fmt.Errorf("%s: missing column %s", f.Name, c)
		}
	}

	for {
		row, err := csvr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		fn(func(name string) string {
			i, ok := idx[name]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		})
	}
}

func parseCoord(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
