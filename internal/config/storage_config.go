package config

// StorageConfig defines where run history and resolution archives are kept
type StorageConfig struct {
	HistoryDBPath string `json:"history_db_path,omitempty" yaml:"history_db_path,omitempty" validate:"required"`
	ArchivePath   string `json:"archive_path,omitempty" yaml:"archive_path,omitempty" validate:"required_if=EnableArchive true"`
	EnableArchive bool   `json:"enable_archive" yaml:"enable_archive"`
}

// NewDefaultStorageConfig creates default storage configuration
func NewDefaultStorageConfig() StorageConfig {
	return StorageConfig{
		HistoryDBPath: DefaultStorageHistoryDBPath,
		ArchivePath:   DefaultStorageArchivePath,
		EnableArchive: DefaultStorageEnableArchive,
	}
}
