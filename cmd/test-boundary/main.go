package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/routedesk/server/internal/boundary"
	"github.com/routedesk/server/internal/lib/geo"
)

func main() {
	var (
		file        = flag.String("file", "", "GeoJSON boundary polygon file (or set BOUNDARY_FILE env var)")
		pointStr    = flag.String("point", "", "Check a single lat,lng point")
		polylineStr = flag.String("polyline", "", "Validate an encoded polyline with endpoint-and-sample checks")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		fmt.Printf("Boundary Test Tool\n\n")
		fmt.Printf("Checks points and polylines against a jurisdiction boundary.\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nExamples:\n")
		fmt.Printf("  %s -file=boundary.geojson -point=\"38.06,-120.54\"\n", os.Args[0])
		fmt.Printf("  %s -file=boundary.geojson -polyline=\"ipkcF~pesO_@~@\"\n", os.Args[0])
		return
	}

	path := *file
	if path == "" {
		path = os.Getenv("BOUNDARY_FILE")
	}
	if path == "" {
		log.Fatal("Boundary file required. Use -file flag or BOUNDARY_FILE env var")
	}

	b, err := boundary.FromFile(path)
	if err != nil {
		log.Fatalf("Failed to load boundary: %v", err)
	}
	fmt.Printf("Boundary loaded from %s\n\n", path)

	if *pointStr != "" {
		var p geo.Point
		if _, err := fmt.Sscanf(strings.TrimSpace(*pointStr), "%f,%f", &p.Latitude, &p.Longitude); err != nil {
			log.Fatalf("Invalid point: %v", err)
		}
		if b.ContainsPoint(p) {
			fmt.Printf("Point %.6f,%.6f is INSIDE the boundary\n", p.Latitude, p.Longitude)
		} else {
			fmt.Printf("Point %.6f,%.6f is OUTSIDE the boundary\n", p.Latitude, p.Longitude)
		}
	}

	if *polylineStr != "" {
		points, err := geo.NewGeoUtils().DecodePolyline(*polylineStr)
		if err != nil {
			log.Fatalf("Failed to decode polyline: %v", err)
		}
		fmt.Printf("Polyline decoded to %d points\n", len(points))
		if err := b.ValidateGeometry(points); err != nil {
			fmt.Printf("Polyline REJECTED: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Polyline accepted\n")
	}

	if *pointStr == "" && *polylineStr == "" {
		fmt.Println("Nothing to check. Pass -point or -polyline.")
	}
}
