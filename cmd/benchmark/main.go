// Benchmark tool for load-testing Kestrel's resolution and dispatch endpoints.
//
// Usage:
//
//	go run cmd/benchmark/main.go -url http://localhost:8080 -n 10000
//
// This tool:
//  1. Generates synthetic transaction contexts across subjects and amounts
//  2. Sends each to Kestrel's /resolve/routing or /dispatch endpoint
//  3. Tracks the decision status distribution (OK / NO_RULE / ...)
//  4. Reports latency and throughput
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ResolveRequest mirrors Kestrel's resolution request format.
type ResolveRequest struct {
	SubjectID string  `json:"subjectId"`
	TrxType   string  `json:"trxType"`
	TrxMethod string  `json:"trxMethod,omitempty"`
	Currency  string  `json:"ccy,omitempty"`
	Country   string  `json:"country,omitempty"`
	Amount    float64 `json:"amount"`
	USDAmount float64 `json:"usdAmount,omitempty"`
}

// ResolveResponse mirrors Kestrel's resolution response format.
type ResolveResponse struct {
	DecisionID string `json:"decisionId"`
	Status     string `json:"status"`
	RuleID     string `json:"ruleId,omitempty"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	StatusOK           int64
	StatusNoRule       int64
	StatusInsufficient int64
	StatusInvalid      int64

	TotalProcessed int64
	TotalErrors    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (m *Metrics) record(d time.Duration) {
	m.mu.Lock()
	m.latencies = append(m.latencies, d)
	m.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	endpoint := flag.String("endpoint", "/resolve/routing", "Endpoint to hit (/resolve/routing, /resolve/commission, /dispatch)")
	count := flag.Int("n", 10000, "Number of requests to send")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	subjects := flag.Int("subjects", 50, "Number of distinct subjects to spread requests across")
	trxType := flag.String("trx-type", "payin", "Transaction type for generated requests")
	maxAmount := flag.Float64("max-amount", 5000, "Upper bound on generated amounts")
	seed := flag.Int64("seed", 42, "Random seed for request generation")
	verbose := flag.Bool("verbose", false, "Print each request result")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║            KESTREL BENCHMARK - Resolution Throughput          ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nKestrel URL: %s\n", *baseURL)
	fmt.Printf("Endpoint:    %s\n", *endpoint)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Requests:    %d\n", *count)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Subjects:    %d\n", *subjects)
	fmt.Println()

	// Check Kestrel is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  cd kestrel && go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	// Pre-generate requests so workers only measure HTTP round trips
	rng := rand.New(rand.NewSource(*seed))
	requests := make([]ResolveRequest, *count)
	currencies := []string{"USD", "EUR", "BRL", "INR"}
	for i := range requests {
		requests[i] = ResolveRequest{
			SubjectID: fmt.Sprintf("subject-%03d", rng.Intn(*subjects)),
			TrxType:   *trxType,
			Currency:  currencies[rng.Intn(len(currencies))],
			Amount:    1 + rng.Float64()*(*maxAmount-1),
		}
	}

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(requests, *baseURL, *endpoint, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func runBenchmark(requests []ResolveRequest, baseURL, endpoint, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan ResolveRequest, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for req := range work {
				start := time.Now()
				result, err := sendRequest(client, baseURL, endpoint, tenantID, req)
				elapsed := time.Since(start)

				metrics.record(elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", req.SubjectID, err)
					}
					continue
				}

				switch result.Status {
				case "OK":
					atomic.AddInt64(&metrics.StatusOK, 1)
				case "NO_RULE":
					atomic.AddInt64(&metrics.StatusNoRule, 1)
				case "INSUFFICIENT":
					atomic.AddInt64(&metrics.StatusInsufficient, 1)
				case "INVALID_CONFIG":
					atomic.AddInt64(&metrics.StatusInvalid, 1)
				}

				if verbose {
					fmt.Printf("%-12s | Amount: %10.2f %s | %-14s | rule=%s | %v\n",
						req.SubjectID,
						req.Amount,
						req.Currency,
						result.Status,
						result.RuleID,
						elapsed.Round(time.Microsecond),
					)
				}
			}
		}()
	}

	for _, req := range requests {
		work <- req
	}
	close(work)

	wg.Wait()

	return metrics
}

func sendRequest(client *http.Client, baseURL, endpoint, tenantID string, req ResolveRequest) (*ResolveResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ResolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 REQUEST STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 STATUS DISTRIBUTION\n")
	fmt.Printf("   OK:               %d\n", m.StatusOK)
	fmt.Printf("   NO_RULE:          %d\n", m.StatusNoRule)
	fmt.Printf("   INSUFFICIENT:     %d\n", m.StatusInsufficient)
	fmt.Printf("   INVALID_CONFIG:   %d\n", m.StatusInvalid)

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Throughput:       %.2f req/sec\n", tps)
	}

	m.mu.Lock()
	lats := m.latencies
	m.mu.Unlock()
	if len(lats) > 0 {
		sort.Slice(lats, func(i, j int) bool { return lats[i] < lats[j] })
		var total time.Duration
		for _, l := range lats {
			total += l
		}
		fmt.Printf("   Avg Latency:      %v\n", (total / time.Duration(len(lats))).Round(time.Microsecond))
		fmt.Printf("   p50 Latency:      %v\n", lats[len(lats)/2].Round(time.Microsecond))
		fmt.Printf("   p95 Latency:      %v\n", lats[len(lats)*95/100].Round(time.Microsecond))
		fmt.Printf("   p99 Latency:      %v\n", lats[len(lats)*99/100].Round(time.Microsecond))
	}

	fmt.Println()
}
