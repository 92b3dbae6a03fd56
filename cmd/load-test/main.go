package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	cfg "wa-gateway/internal/config"
)

type sendRequest struct {
	Number string `json:"number"`
	Type   string `json:"type"`
	Body   string `json:"body"`
	Async  bool   `json:"async"`
}

type loadTestResult struct {
	TotalRequests   int
	SuccessCount    int32
	FailureCount    int32
	TotalDuration   time.Duration
	RequestsPerSec  float64
	AvgResponseTime time.Duration
	P95ResponseTime time.Duration
	MaxResponseTime time.Duration
	Errors          map[string]int
}

type target struct {
	url    string
	token  string
	number string
	async  bool
}

func (t target) send(client *http.Client, reqNum int) (int, []byte, error) {
	payload, _ := json.Marshal(sendRequest{
		Number: t.number,
		Type:   "TEXT",
		Body:   fmt.Sprintf("load test message #%d", reqNum),
		Async:  t.async,
	})

	req, err := http.NewRequest(http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, body, err
}

func runLoadTest(t target, numRequests, concurrency int) *loadTestResult {
	var (
		successCount int32
		failureCount int32
		errorsMu     sync.Mutex
		errs         = make(map[string]int)
		latencies    = make([]time.Duration, numRequests)
		wg           sync.WaitGroup
		semaphore    = make(chan struct{}, concurrency)
		client       = &http.Client{Timeout: 30 * time.Second}
	)

	fail := func(key string) {
		atomic.AddInt32(&failureCount, 1)
		errorsMu.Lock()
		errs[key]++
		errorsMu.Unlock()
	}

	fmt.Printf("\nStarting load test: %d requests with concurrency %d\n", numRequests, concurrency)
	fmt.Printf("Target: %s (async=%v)\n", t.url, t.async)

	start := time.Now()
	for i := 0; i < numRequests; i++ {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(reqNum int) {
			defer wg.Done()
			defer func() { <-semaphore }()

			reqStart := time.Now()
			status, body, err := t.send(client, reqNum)
			latencies[reqNum] = time.Since(reqStart)

			switch {
			case err != nil:
				fail(err.Error())
			case status != http.StatusOK && status != http.StatusAccepted:
				fail(fmt.Sprintf("HTTP %d: %s", status, body))
			default:
				atomic.AddInt32(&successCount, 1)
			}
		}(i)
	}
	wg.Wait()
	total := time.Since(start)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	return &loadTestResult{
		TotalRequests:   numRequests,
		SuccessCount:    successCount,
		FailureCount:    failureCount,
		TotalDuration:   total,
		RequestsPerSec:  float64(numRequests) / total.Seconds(),
		AvgResponseTime: sum / time.Duration(numRequests),
		P95ResponseTime: latencies[(numRequests*95)/100],
		MaxResponseTime: latencies[numRequests-1],
		Errors:          errs,
	}
}

func printResults(r *loadTestResult) {
	fmt.Println("------------------------------------------------------")
	fmt.Printf("Total Requests:    %d\n", r.TotalRequests)
	fmt.Printf("Success:           %d (%.2f%%)\n", r.SuccessCount, float64(r.SuccessCount)/float64(r.TotalRequests)*100)
	fmt.Printf("Failed:            %d (%.2f%%)\n", r.FailureCount, float64(r.FailureCount)/float64(r.TotalRequests)*100)
	fmt.Printf("Total Duration:    %v\n", r.TotalDuration)
	fmt.Printf("Requests/sec:      %.2f\n", r.RequestsPerSec)
	fmt.Printf("Avg Response Time: %v\n", r.AvgResponseTime)
	fmt.Printf("P95 Response Time: %v\n", r.P95ResponseTime)
	fmt.Printf("Max Response Time: %v\n", r.MaxResponseTime)

	if len(r.Errors) > 0 {
		fmt.Println("Errors:")
		for msg, count := range r.Errors {
			fmt.Printf("  - %s: %d times\n", msg, count)
		}
	}
	fmt.Println("------------------------------------------------------")
}

func main() {
	conf := cfg.FromEnv()

	instanceID := flag.String("instance", "", "instance id to send through (required)")
	number := flag.String("number", "5511900000000", "recipient number")
	requests := flag.Int("n", 100, "number of requests")
	concurrency := flag.Int("c", 10, "concurrent requests")
	async := flag.Bool("async", false, "queue sends instead of delivering inline")
	base := flag.String("base", "http://localhost:"+conf.Port, "gateway base URL")
	flag.Parse()

	if *instanceID == "" || *requests < 1 || *concurrency < 1 {
		flag.Usage()
		os.Exit(2)
	}

	resp, err := http.Get(*base + "/health")
	if err != nil {
		fmt.Printf("Cannot reach gateway at %s: %v\n", *base, err)
		os.Exit(1)
	}
	resp.Body.Close()

	t := target{
		url:    *base + "/api/instances/" + url.PathEscape(*instanceID) + "/messages",
		token:  conf.Token,
		number: *number,
		async:  *async,
	}
	printResults(runLoadTest(t, *requests, *concurrency))
}
