// Package weather reads the latest observation from a station feed shaped
// like the Met Éireann observations API.
package weather
