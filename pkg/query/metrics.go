// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer = otel.Tracer("quill.query")

// Cache observability. The counters register on the default registry;
// the binary decides whether anything scrapes them.
var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_query_cache_hits_total",
		Help: "Fresh cache hits served without a fetch, by query group.",
	}, []string{"tag"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_query_cache_misses_total",
		Help: "Fetches forced by a cold or stale cache, by query group.",
	}, []string{"tag"})

	invalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_query_invalidations_total",
		Help: "Invalidations fired, by query group.",
	}, []string{"tag"})

	coalescedFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_query_coalesced_fetches_total",
		Help: "Fetches that attached to an identical in-flight call instead of issuing their own.",
	})

	fetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_query_fetch_errors_total",
		Help: "Fetch attempts that failed and stored nothing, by query group.",
	}, []string{"tag"})

	mutationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_query_mutation_failures_total",
		Help: "Mutations that failed and therefore invalidated nothing, by mutation name.",
	}, []string{"mutation"})
)
