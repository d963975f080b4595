//go:build silero

package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Environment variables consulted when locating the ONNX Runtime library.
const (
	envORTLibPath = "VAD_ORT_LIB_PATH"
	envDevMode    = "VAD_DEV_MODE"
)

// resolveORTLibPath returns the path to the ONNX Runtime shared library.
// VAD_ORT_LIB_PATH wins outright; otherwise the first existing candidate from
// ortLibCandidates is used. Working-directory candidates are only considered
// with VAD_DEV_MODE=1 so a stray lib/ folder cannot hijack the process.
func resolveORTLibPath() (string, error) {
	if envPath := os.Getenv(envORTLibPath); envPath != "" {
		info, err := os.Stat(envPath)
		if err != nil {
			return "", fmt.Errorf("ort: %s=%q does not exist", envORTLibPath, envPath)
		}
		if info.IsDir() {
			return "", fmt.Errorf("ort: %s=%q is a directory, expected a file", envORTLibPath, envPath)
		}
		return envPath, nil
	}

	var exeDir, cwd string
	if exePath, err := os.Executable(); err == nil {
		exeDir = filepath.Dir(exePath)
	}
	if os.Getenv(envDevMode) == "1" {
		cwd, _ = os.Getwd()
	}
	for _, path := range ortLibCandidates(exeDir, cwd) {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}

	return "", fmt.Errorf("ort: %s not found under lib/%s relative to executable (set %s, or %s=1 to search the working directory)",
		ortLibFilename(), platformDir(), envORTLibPath, envDevMode)
}

// ortLibCandidates lists lib/<os>-<arch>/ and ../lib/<os>-<arch>/ under each
// non-empty base directory, executable directory first.
func ortLibCandidates(bases ...string) []string {
	rel := filepath.Join("lib", platformDir(), ortLibFilename())
	var out []string
	for _, base := range bases {
		if base == "" {
			continue
		}
		out = append(out, filepath.Join(base, rel), filepath.Join(base, "..", rel))
	}
	return out
}

func platformDir() string {
	return runtime.GOOS + "-" + runtime.GOARCH
}

// ortLibFilename returns the platform-specific ONNX Runtime library filename.
func ortLibFilename() string {
	switch runtime.GOOS {
	case "darwin":
		return "libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "libonnxruntime.so"
	}
}
