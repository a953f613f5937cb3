// Package client is the Go SDK for the dtchaind HTTP API.
//
// It builds chains on the server, submits chains for verification,
// extends verified chains with new payloads and digests arbitrary text:
//
//	c, err := client.New("http://localhost:8080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	built, err := c.BuildChain(ctx, 10)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(built.Root)
//
// # Verifying a chain
//
// VerifyChain never fails because a chain is broken; a broken chain comes
// back with Valid set to false and the reason in Error:
//
//	res, err := c.VerifyChain(ctx, built.Document)
//	if err != nil {
//	    log.Fatal(err) // transport or request problem
//	}
//	if !res.Valid {
//	    log.Printf("chain rejected: %s", res.Error)
//	}
//
// # Errors
//
// Any non-2xx response is returned as *APIError. Use errors.As to inspect
// the status code:
//
//	var apiErr *client.APIError
//	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
//	    // back off
//	}
package client
