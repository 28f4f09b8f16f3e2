// Package output reports collection runs.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output, streamed as requests run
//   - JSON: Machine-readable JSON summary written on Flush
//   - JUnit: JUnit XML format for CI integration
//
// ConsoleReporter and JSONReporter implement runner.Reporter.
package output
