package storage

import (
	"os"
	"path/filepath"
)

// DiskUsageBytes returns the total size in bytes of the given paths.
// Each path may be a file or a directory (recursively summed).
// Missing or inaccessible paths are skipped (contribute 0); errors during walk are returned.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if info.IsDir() {
			n, err := dirSize(p)
			if err != nil {
				return 0, err
			}
			total += n
		} else {
			total += info.Size()
		}
	}
	return total, nil
}

// DatabaseSizeBytes returns the on-disk size of a SQLite database including its WAL and
// shared-memory files. An in-memory database has size 0.
func DatabaseSizeBytes(dbPath string) (int64, error) {
	if dbPath == "" || dbPath == MemoryPath {
		return 0, nil
	}
	return DiskUsageBytes(dbPath, dbPath+"-wal", dbPath+"-shm")
}

// Size returns the on-disk size of the database.
func (s *SQLiteStorage) Size() (int64, error) {
	return DatabaseSizeBytes(s.path)
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info != nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
