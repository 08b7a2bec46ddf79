// Package config assembles the flat configuration namespace of a run from
// cascading files and resolves product selections through a lookup table.
package config
