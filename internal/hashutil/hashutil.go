// Package hashutil creates the MD5 hashes that key simulation folders and
// database entries. A simulation folder is <simDir>/<dutName>_<dutHash>/
// <sweepName>_<sweepHash>, so identical inputs always land in the same place
// and a finished run never has to be repeated.
package hashutil

import (
	"crypto/md5"
	"encoding/hex"
	"os"
)

// Hash returns the hex MD5 of all contents concatenated.
func Hash(contents ...string) string {
	sum := md5.New()
	for _, content := range contents {
		sum.Write([]byte(content))
	}
	return hex.EncodeToString(sum.Sum(nil))
}

// HashFiles hashes the concatenated contents of the given files.
func HashFiles(paths ...string) (string, error) {
	sum := md5.New()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		sum.Write(data)
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}
