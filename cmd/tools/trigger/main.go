package main

import (
	"fmt"
	"net/http"
	"os"
)

func main() {
	base := os.Getenv("LICITAFLIX_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	resp, err := http.Post(base+"/api/v1/search/today", "application/json", nil)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	fmt.Printf("Response Status: %s\n", resp.Status)
	if resp.StatusCode != http.StatusAccepted {
		os.Exit(1)
	}
}
