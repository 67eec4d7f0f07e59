// Package utils provides small time formatting helpers shared by the
// smartbus packages.
package utils
