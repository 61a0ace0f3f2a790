// Command resolve normalizes a lot/plan reference and optionally
// resolves it against the cadastre, printing GeoJSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"lotplan-export/internal/arcgis"
	"lotplan-export/internal/lotplan"
	"lotplan-export/internal/parcel"
)

func main() {
	resolve := flag.Bool("resolve", false, "Resolve the parcel against the cadastre (requires CADASTRE_URL)")
	timeout := flag.Duration("timeout", 45*time.Second, "Cadastre request timeout")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: resolve [-resolve] <lot/plan reference>")
		os.Exit(2)
	}
	input := strings.Join(flag.Args(), " ")

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Skipping .env: %v", err)
	}

	identifiers := lotplan.Normalize(input)
	if len(identifiers) == 0 {
		log.Fatalf("Could not parse lot/plan input: %q", input)
	}
	for _, id := range identifiers {
		fmt.Println(id)
	}

	if !*resolve {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := arcgis.NewClient(*timeout)
	resolver := parcel.NewResolver(client, parcel.ConfigFromEnv(), nil)

	result, err := resolver.Resolve(ctx, identifiers)
	if err != nil {
		log.Fatalf("Resolve failed: %v", err)
	}
	if result.Parcel == nil {
		log.Fatalf("No parcels matched %q", input)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Encoding result: %v", err)
	}
	fmt.Println(string(out))
}
