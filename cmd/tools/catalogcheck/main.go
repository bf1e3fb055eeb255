package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/noah-isme/servis-booking/internal/catalog"
	"github.com/noah-isme/servis-booking/internal/pricing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	path := flag.String("file", os.Getenv("CATALOG_PATH"), "catalog JSON file (defaults to the bundled catalog)")
	city := flag.String("city", "", "print a price sheet for this city")
	flag.Parse()

	cat, err := catalog.NewLoader().LoadFile(*path)
	if err != nil {
		log.Fatalf("catalog invalid: %v", err)
	}
	source := *path
	if source == "" {
		source = "bundled catalog"
	}
	log.Printf("%s: %d items OK", source, cat.Len())

	if strings.TrimSpace(*city) == "" {
		return
	}
	c, err := pricing.ParseCity(*city)
	if err != nil {
		log.Fatalf("city %q: %v", *city, err)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tKIND\tVEHICLE\tBASE\t%s\n", strings.ToUpper(string(c)))
	for _, it := range cat.Items() {
		vehicle := string(it.Vehicle)
		if vehicle == "" {
			vehicle = "any"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.Kind, vehicle,
			pricing.FormatPriceRange(it.Price),
			pricing.FormatPriceRange(pricing.ApplyCityMultiplier(it.Price, c)))
	}
	if err := tw.Flush(); err != nil {
		log.Fatalf("write price sheet: %v", err)
	}
}
