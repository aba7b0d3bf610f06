// Package runner sends the steps of data-driven scenarios.
//
// A Runner owns one scenario run. Before each step is sent its JSON form
// is resolved against the bodies and headers of the steps sent earlier
// ($<cache:step:path>, $<cache_headers:step:name>) and then against the
// general placeholders (dates, rx, testdata, builtins). The response is
// recorded under the step name and the expected status code is checked;
// the first failure aborts the scenario.
//
// A Suite runs many scenarios, sequentially or with bounded parallelism,
// each with its own Runner, and aggregates results and latencies.
package runner
