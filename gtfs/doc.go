/*
Package gtfs builds a directed stop adjacency graph from a GTFS static
schedule archive.

The graph is a read-only backdrop for map rendering. Nodes come from
stops.txt, and each edge joins two consecutive stops of a trip in
stop_times.txt, ordered by stop_sequence. trips.txt is used to narrow the
graph to one operator's routes.

# Basic Usage

Load from a local zip:

	g, err := gtfs.LoadGraph("data/gtfs_dublin.zip", gtfs.GraphOptions{RoutePrefix: "4820"})
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(g.NodeCount(), g.EdgeCount())

Load from raw bytes:

	g, err := gtfs.LoadGraphFromBytes(zipBytes, gtfs.GraphOptions{})

# Performance: Cache the Graph

Parsing stop_times.txt for a city network takes seconds. Build the graph
once with the build-graph command and load the gob file at startup:

	_ = gtfs.SaveGraphToFile(g, "data/graph.gob")
	g, err := gtfs.LoadGraphFromFile("data/graph.gob")
*/
package gtfs
