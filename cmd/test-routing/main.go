package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/routedesk/server/internal/clients/routing"
	"github.com/routedesk/server/internal/lib/geo"
)

func main() {
	var (
		apiKey       = flag.String("api-key", "", "Routing API key (or set ROUTING_API_KEY env var)")
		baseURL      = flag.String("base-url", "https://routes.googleapis.com", "Routing API base URL")
		originStr    = flag.String("origin", "38.067400,-120.540200", "Origin coordinates (lat,lng)")
		destStr      = flag.String("dest", "38.139117,-120.456111", "Destination coordinates (lat,lng)")
		waypointsStr = flag.String("waypoints", "", "Optional waypoints as lat,lng pairs separated by ';'")
		help         = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		fmt.Printf("Routing API Test Tool\n\n")
		fmt.Printf("Computes a route through the given markers and prints the result.\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nExamples:\n")
		fmt.Printf("  %s -api-key=YOUR_KEY\n", os.Args[0])
		fmt.Printf("  %s -origin=\"37.7749,-122.4194\" -dest=\"34.0522,-118.2437\" -waypoints=\"36.7,-119.8\"\n", os.Args[0])
		fmt.Printf("  ROUTING_API_KEY=your_key %s\n", os.Args[0])
		return
	}

	key := *apiKey
	if key == "" {
		key = os.Getenv("ROUTING_API_KEY")
	}
	if key == "" {
		log.Fatal("Routing API key required. Use -api-key flag or ROUTING_API_KEY env var")
	}

	origin, err := parsePoint(*originStr)
	if err != nil {
		log.Fatalf("Invalid origin coordinates: %v", err)
	}
	destination, err := parsePoint(*destStr)
	if err != nil {
		log.Fatalf("Invalid destination coordinates: %v", err)
	}

	var intermediates []geo.Point
	if *waypointsStr != "" {
		for _, pair := range strings.Split(*waypointsStr, ";") {
			p, err := parsePoint(pair)
			if err != nil {
				log.Fatalf("Invalid waypoint %q: %v", pair, err)
			}
			intermediates = append(intermediates, p)
		}
	}

	fmt.Printf("Routing API Test\n")
	fmt.Printf("Origin:      %.6f,%.6f\n", origin.Latitude, origin.Longitude)
	fmt.Printf("Destination: %.6f,%.6f\n", destination.Latitude, destination.Longitude)
	fmt.Printf("Waypoints:   %d\n\n", len(intermediates))

	client := routing.NewClient(key, *baseURL)
	data, err := client.ComputeRoute(context.Background(), origin, destination, intermediates)
	if err != nil {
		log.Fatalf("Route computation failed: %v", err)
	}

	points, err := geo.NewGeoUtils().DecodePolyline(data.Polyline)
	if err != nil {
		log.Fatalf("Failed to decode returned polyline: %v", err)
	}

	fmt.Printf("Duration:  %d seconds\n", data.DurationSeconds)
	fmt.Printf("Distance:  %d meters\n", data.DistanceMeters)
	fmt.Printf("Polyline:  %d chars, %d points\n", len(data.Polyline), len(points))
}

func parsePoint(s string) (geo.Point, error) {
	var p geo.Point
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f,%f", &p.Latitude, &p.Longitude)
	return p, err
}
