// Package output renders admin command results as a table, JSON or YAML.
//
// Tables are built by reflection from slices and structs. Field headers
// come from the json tag; a `table:"-"` tag hides a field and
// `table:"wide"` shows it only with --wide.
package output
