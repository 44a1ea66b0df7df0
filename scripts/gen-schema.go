//go:build ignore

package main

import (
	"fmt"
	"os"

	"github.com/ormasoftchile/scanflow/pkg/profile"
	"github.com/ormasoftchile/scanflow/pkg/providers"
)

func main() {
	if err := os.MkdirAll("schemas", 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(1)
	}

	data, err := profile.GenerateJSONSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile("schemas/profile-v1.json", data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("wrote schemas/profile-v1.json")

	scenarioData, err := providers.GenerateScenarioSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error generating scenario schema: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile("schemas/scenario-v1.json", scenarioData, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("wrote schemas/scenario-v1.json")
}
