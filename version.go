package hl7v2

import "strings"

// Version represents an HL7 v2.x version identifier as carried in MSH.12.
type Version string

// Supported HL7 versions.
const (
	V23  Version = "2.3"
	V231 Version = "2.3.1"
	V24  Version = "2.4"
	V25  Version = "2.5"
	V251 Version = "2.5.1"
	V26  Version = "2.6"
	V27  Version = "2.7"
	V271 Version = "2.7.1"
	V28  Version = "2.8"
)

// DefaultVersion is the schema baseline used when a message does not
// declare a known version.
const DefaultVersion = V25

// String returns the version string.
func (v Version) String() string {
	return string(v)
}

// IsValid returns true if this is a supported HL7 version.
func (v Version) IsValid() bool {
	_, ok := versionConfigs[v]
	return ok
}

// ParseVersion normalizes a MSH.12 value ("2.5", " 2.5.1 ", "2.4^...") to a
// Version. Unsupported values report false.
func ParseVersion(s string) (Version, bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "^&~"); i >= 0 {
		s = s[:i]
	}
	v := Version(s)
	return v, v.IsValid()
}

// SchemaVersion returns the version of the embedded schema used to validate
// messages of this version. Unknown versions fall back to DefaultVersion.
func (v Version) SchemaVersion() Version {
	if cfg, ok := versionConfigs[v]; ok {
		return cfg.SchemaVersion
	}
	return DefaultVersion
}

// versionConfig holds version-specific configuration.
type versionConfig struct {
	// SchemaVersion is the embedded schema document used for this version
	SchemaVersion Version

	// TimestampType is the data type of MSH.7 in this version
	TimestampType string
}

// versionConfigs maps HL7 versions to their configurations.
var versionConfigs = map[Version]versionConfig{
	V23:  {SchemaVersion: V23, TimestampType: "TS"},
	V231: {SchemaVersion: V23, TimestampType: "TS"},
	V24:  {SchemaVersion: V25, TimestampType: "TS"},
	V25:  {SchemaVersion: V25, TimestampType: "TS"},
	V251: {SchemaVersion: V25, TimestampType: "TS"},
	V26:  {SchemaVersion: V25, TimestampType: "DTM"},
	V27:  {SchemaVersion: V25, TimestampType: "DTM"},
	V271: {SchemaVersion: V25, TimestampType: "DTM"},
	V28:  {SchemaVersion: V25, TimestampType: "DTM"},
}

// getVersionConfig returns the configuration for an HL7 version.
func getVersionConfig(v Version) (versionConfig, bool) {
	cfg, ok := versionConfigs[v]
	return cfg, ok
}

// TimestampType returns the data type of MSH.7 for this version.
func (v Version) TimestampType() string {
	if cfg, ok := getVersionConfig(v); ok {
		return cfg.TimestampType
	}
	return "TS"
}
