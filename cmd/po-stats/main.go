// Command po-stats aggregates translation statistics reported by the
// translator over OTLP, HTTP or JSONL replay.
package main

func main() {
	Execute()
}
