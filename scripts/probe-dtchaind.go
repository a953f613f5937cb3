//go:build ignore

// probe-dtchaind.go builds chains of several sizes against a running dtchaind,
// submits each one back for verification and reports round-trip latency.
//
// Run with: go run scripts/probe-dtchaind.go [base-url]
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/designtech/dtchain/pkg/client"
)

var counts = []int{0, 1, 2, 10, 100, 1000}

const rounds = 5

type result struct {
	count   int
	records int
	valid   bool
	err     string
	latency time.Duration
}

func probe(ctx context.Context, c *client.Client, count int) result {
	start := time.Now()

	built, err := c.BuildChain(ctx, count)
	if err != nil {
		return result{count: count, err: err.Error(), latency: time.Since(start)}
	}
	res, err := c.VerifyChain(ctx, built.Document)
	latency := time.Since(start)
	if err != nil {
		return result{count: count, err: err.Error(), latency: latency}
	}
	return result{count: count, records: res.Records, valid: res.Valid, err: res.Error, latency: latency}
}

func main() {
	base := "http://localhost:8080"
	if len(os.Args) > 1 {
		base = os.Args[1]
	}
	c, err := client.New(base, client.WithTimeout(30*time.Second))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx := context.Background()

	jobs := make(chan int, len(counts)*rounds)
	results := make(chan result, len(counts)*rounds)

	// Worker pool: 4 concurrent probes
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				results <- probe(ctx, c, n)
			}
		}()
	}

	total := 0
	for r := 0; r < rounds; r++ {
		for _, n := range counts {
			jobs <- n
			total++
		}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	byCount := make(map[int][]result)
	failures := 0
	checked := 0
	for r := range results {
		checked++
		fmt.Printf("\r  probing... %d/%d", checked, total)
		if !r.valid || r.records != r.count {
			failures++
		}
		byCount[r.count] = append(byCount[r.count], r)
	}
	fmt.Printf("\r  done: %d build/verify round trips against %s\n\n", total, base)

	fmt.Printf("  %-8s %-8s %-12s %-12s\n", "COUNT", "VALID", "P50", "MAX")
	for _, n := range counts {
		rs := byCount[n]
		sort.Slice(rs, func(i, j int) bool { return rs[i].latency < rs[j].latency })
		valid := 0
		for _, r := range rs {
			if r.valid {
				valid++
			}
		}
		fmt.Printf("  %-8d %d/%-6d %-12s %-12s\n", n, valid, len(rs),
			rs[len(rs)/2].latency.Round(time.Microsecond), rs[len(rs)-1].latency.Round(time.Microsecond))
	}

	if failures > 0 {
		fmt.Printf("\n  %d round trips failed:\n", failures)
		for _, n := range counts {
			for _, r := range byCount[n] {
				if !r.valid || r.records != r.count {
					fmt.Printf("    count=%d: %s\n", r.count, r.err)
				}
			}
		}
		os.Exit(1)
	}
}
