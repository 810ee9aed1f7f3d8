// Package services defines the error vocabulary shared by components that
// wrap external tools. Sentinel markers tag failures so the recovery layer can
// classify them without string matching against arbitrary wrapped text.
package services
