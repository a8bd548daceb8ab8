// Command trigger fires the generation endpoint for one record and prints
// the acknowledgment. Useful for kicking off a request without going through
// an automation.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	var (
		recordFlag string
		serverFlag string
	)

	flag.StringVar(&recordFlag, "record", "", "record ID to generate a video for")
	flag.StringVar(&serverFlag, "server", "http://localhost:8080", "base URL of the running service")
	flag.Parse()

	recordID := strings.TrimSpace(recordFlag)
	if recordID == "" {
		exitWithError(errors.New("-record is required"))
	}

	payload, err := json.Marshal(map[string]string{"recordId": recordID})
	if err != nil {
		exitWithError(err)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	endpoint := strings.TrimRight(serverFlag, "/") + "/api/generate-video"
	resp, err := client.Post(endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		exitWithError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		exitWithError(err)
	}
	if resp.StatusCode != http.StatusOK {
		exitWithError(fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	fmt.Println(strings.TrimSpace(string(body)))
	fmt.Printf("lifecycle started for %s; watch the record's status and error_log fields\n", recordID)
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "trigger: %v\n", err)
	os.Exit(1)
}
