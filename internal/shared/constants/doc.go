// Package constants holds defaults shared by cmd/ and internal/ packages:
// file permissions, the input size cap and history settings.
package constants
