// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code accepts a Clock interface parameter instead of
// calling time.Now, time.After, time.AfterFunc, or time.Sleep
// directly. In production, Real() provides the standard library
// behavior. In tests, Fake() provides a deterministic clock that
// advances only when Advance is called.
//
// The broker uses this for its two bounded waits: the Send
// backpressure timeout and the session drain timeout. Tests drive both
// deterministically:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	b := broker.New(broker.Config{Clock: c, ...})
//	// ... fill a peer's outbound channel ...
//	c.WaitForTimers(1)        // wait for Send to register its timeout
//	c.Advance(time.Second)    // fire it
//
// WaitForTimers eliminates the race between timer registration and
// time advancement that plagues tests using time.Sleep for
// synchronization.
package clock
