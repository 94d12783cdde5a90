// Package testsupport holds fixtures shared by package tests: throwaway
// configurations, in-process decoder servers and helper-process stubs that
// stand in for the zxingd binary.
package testsupport
