package toolchain

import (
	"fmt"
	"runtime"
)

// Archive URL construction per language. Versions are exact; resolution of
// a version request to an exact version happens in the language backends.

// NodeDownloadURL returns the official dist archive for an exact node
// version, e.g. "20.11.1".
func NodeDownloadURL(version string) (string, bool) {
	osName, arch := nodePlatform()
	if osName == "" {
		return "", false
	}
	ext := "tar.gz"
	if osName == "win" {
		ext = "zip"
	}
	return fmt.Sprintf("https://nodejs.org/dist/v%s/node-v%s-%s-%s.%s",
		version, version, osName, arch, ext), true
}

func nodePlatform() (string, string) {
	var osName string
	switch runtime.GOOS {
	case "linux":
		osName = "linux"
	case "darwin":
		osName = "darwin"
	case "windows":
		osName = "win"
	default:
		return "", ""
	}
	switch runtime.GOARCH {
	case "amd64":
		return osName, "x64"
	case "arm64":
		return osName, "arm64"
	case "386":
		return osName, "x86"
	default:
		return "", ""
	}
}

// GoDownloadURL returns the official archive for an exact go version,
// e.g. "1.22.4".
func GoDownloadURL(version string) (string, bool) {
	switch runtime.GOOS {
	case "linux", "darwin":
		return fmt.Sprintf("https://go.dev/dl/go%s.%s-%s.tar.gz", version, runtime.GOOS, runtime.GOARCH), true
	case "windows":
		return fmt.Sprintf("https://go.dev/dl/go%s.windows-%s.zip", version, runtime.GOARCH), true
	default:
		return "", false
	}
}

// RustDownloadURL returns the standalone rust archive for an exact version,
// e.g. "1.78.0".
func RustDownloadURL(version string) (string, bool) {
	triple := rustTriple()
	if triple == "" {
		return "", false
	}
	return fmt.Sprintf("https://static.rust-lang.org/dist/rust-%s-%s.tar.gz", version, triple), true
}

func rustTriple() string {
	switch runtime.GOOS + "/" + runtime.GOARCH {
	case "linux/amd64":
		return "x86_64-unknown-linux-gnu"
	case "linux/arm64":
		return "aarch64-unknown-linux-gnu"
	case "darwin/amd64":
		return "x86_64-apple-darwin"
	case "darwin/arm64":
		return "aarch64-apple-darwin"
	case "windows/amd64":
		return "x86_64-pc-windows-msvc"
	default:
		return ""
	}
}

// PythonDownloadURL returns a python-build-standalone archive for an exact
// CPython version, e.g. "3.12.3". These builds are relocatable, which a
// store-managed toolchain requires.
func PythonDownloadURL(version string) (string, bool) {
	triple := pythonTriple()
	if triple == "" {
		return "", false
	}
	const release = "20240415"
	return fmt.Sprintf(
		"https://github.com/indygreg/python-build-standalone/releases/download/%s/cpython-%s+%s-%s-install_only.tar.gz",
		release, version, release, triple), true
}

func pythonTriple() string {
	switch runtime.GOOS + "/" + runtime.GOARCH {
	case "linux/amd64":
		return "x86_64-unknown-linux-gnu"
	case "linux/arm64":
		return "aarch64-unknown-linux-gnu"
	case "darwin/amd64":
		return "x86_64-apple-darwin"
	case "darwin/arm64":
		return "aarch64-apple-darwin"
	case "windows/amd64":
		return "x86_64-pc-windows-msvc"
	default:
		return ""
	}
}
