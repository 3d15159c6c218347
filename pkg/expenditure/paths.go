package expenditure

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// DataFolder is the directory, local and in the bucket, holding Parquet files.
const DataFolder = "data"

// FileName is the dataset file name for a fiscal year, without extension.
func FileName(year int) string {
	return fmt.Sprintf("Louisville_Metro_KY_-_Expenditures_Data_For_Fiscal_Year_%d", year)
}

// SourceURL is the remote gzip CSV for a fiscal year.
func SourceURL(baseURL string, year int) string {
	return strings.TrimRight(baseURL, "/") + "/" + FileName(year) + ".csv.gz"
}

// ObjectPath is the object storage key of the Parquet file for a fiscal year.
func ObjectPath(year int) string {
	return path.Join(DataFolder, FileName(year)+".parquet")
}

// LocalPath is where the Parquet file for a fiscal year lives under dataDir.
// It mirrors ObjectPath.
func LocalPath(dataDir string, year int) string {
	return filepath.Join(dataDir, filepath.FromSlash(ObjectPath(year)))
}
