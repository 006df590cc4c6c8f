// Package analyzer is the rule evaluation and scoring engine for markup
// security scans.
//
// A scan tokenizes the raw input text once into a Document and runs every
// registered Detector over it. Detectors are independent pure functions
// built on the rule table in rules.go; each
// rule fixes a severity, a deduction weight, a CWE guideline and a
// remediation. Assemble buckets the findings by severity, subtracts the
// deductions from 100, clamps the result and derives the risk level.
//
// Matching is pattern based over raw text rather than a parsed document
// tree. A tag-shaped string inside a script or comment is matched like real
// markup; this keeps the engine tolerant of malformed input.
package analyzer
