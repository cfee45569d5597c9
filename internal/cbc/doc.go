// Package cbc formats broadcast events into provider wire payloads and sends
// them to each mobile network's Cell Broadcast Centre through its proxy
// Lambda functions.
//
// Three providers take CAP-style payloads. Vodafone takes the IBAG format,
// which carries an eight-digit hex message number drawn from a shared
// sequence. Every provider has a primary and an optional secondary proxy,
// and each proxy can reach two redundant CBC targets.
package cbc
