// cron-sim triggers the reminder dispatch endpoint the way the production
// scheduler does, for local testing against a running instance.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

func main() {
	var (
		baseURL  = flag.String("base-url", getenv("BASE_URL", "http://localhost:8080"), "terminbuddy base url")
		secret   = flag.String("secret", getenv("CRON_SECRET", ""), "shared cron secret")
		useQuery = flag.Bool("query", false, "send the secret as ?secret= instead of the X-Cron-Secret header")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("CRON_SECRET is required")
	}

	req, err := http.NewRequest(http.MethodPost, buildTarget(*baseURL, *secret, *useQuery), nil)
	if err != nil {
		fatal(err.Error())
	}
	if !*useQuery {
		req.Header.Set("X-Cron-Secret", *secret)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("status=%d\n%s\n", resp.StatusCode, body)
}

func buildTarget(baseURL, secret string, useQuery bool) string {
	target := strings.TrimRight(baseURL, "/") + "/api/v1/cron/reminders"
	if useQuery {
		q := url.Values{"secret": {secret}}
		target += "?" + q.Encode()
	}
	return target
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
