package types

// NamingScheme selects how submission folder names are parsed into a
// student name and ID. Historical Moodle exports used two conventions.
type NamingScheme string

const (
	// NamingAuto tries NamingNameID, then NamingIDName.
	NamingAuto NamingScheme = "auto"

	// NamingNameID matches "Name_1234567_..." folders.
	NamingNameID NamingScheme = "name-id"

	// NamingIDName matches "1234567 - Name - ..." folders.
	NamingIDName NamingScheme = "id-name"
)

// CollisionPolicy decides what happens when an output file already exists.
type CollisionPolicy string

const (
	CollisionOverwrite CollisionPolicy = "overwrite"
	CollisionSkip      CollisionPolicy = "skip"
	CollisionFail      CollisionPolicy = "fail"
	CollisionPrompt    CollisionPolicy = "prompt"
)

const (
	// DefaultKeyFileName is the name of the index file written next to the
	// melded document.
	DefaultKeyFileName = "key_file.csv"

	// DefaultMeldedFileName is the name of the combined document.
	DefaultMeldedFileName = "melded_PDF.pdf"

	// DefaultUnmeldedDirName is the folder unmeld writes per-submission files into.
	DefaultUnmeldedDirName = "Unmelded"

	// DefaultMaxFiles is the largest plausible number of files in one submission folder.
	DefaultMaxFiles = 9

	// DefaultMaxNameChars limits output file stems to keep paths short.
	DefaultMaxNameChars = 20

	// DefaultSizeWarningBytes triggers a warning for unusually large source files.
	DefaultSizeWarningBytes = 10 << 20

	// DefaultAnnotationWarning is the most annotations a source file's first
	// page may carry before meld warns about it.
	DefaultAnnotationWarning = 5

	// DefaultScaleWidth is A4 width in points.
	DefaultScaleWidth = 595
)

// MeldConfig holds settings for the meld operation.
type MeldConfig struct {
	// RootDir holds one subfolder per submission.
	RootDir string `json:"root_dir" yaml:"root_dir"`

	// OutputDir receives the melded document and key file. Empty means the
	// parent of RootDir.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// MeldedFileName is the combined document's file name (default melded_PDF.pdf).
	MeldedFileName string `json:"melded_file_name" yaml:"melded_file_name"`

	// KeyFileName is the index file's name (default key_file.csv).
	KeyFileName string `json:"key_file_name" yaml:"key_file_name"`

	// Naming selects the folder naming scheme used for labels.
	Naming NamingScheme `json:"naming" yaml:"naming"`

	// Labels stamps the first page of every source file with the student's ID.
	Labels bool `json:"labels" yaml:"labels"`

	// ShowNames includes the student's name in the label, not just the ID.
	ShowNames bool `json:"show_names" yaml:"show_names"`

	// MaxFiles excludes submission folders holding more files than this (default 9).
	MaxFiles int `json:"max_files" yaml:"max_files"`

	// SizeWarningBytes warns about source files larger than this (default 10 MiB).
	SizeWarningBytes int64 `json:"size_warning_bytes" yaml:"size_warning_bytes"`

	// AnnotationWarning warns about source files whose first page has more
	// annotations than this (default 5).
	AnnotationWarning int `json:"annotation_warning" yaml:"annotation_warning"`

	// ScaleWidth rescales every melded page to this many points wide,
	// keeping its aspect ratio. Zero leaves pages at their own size.
	ScaleWidth float64 `json:"scale_width" yaml:"scale_width"`

	// Collision decides what to do when the melded document already exists.
	Collision CollisionPolicy `json:"collision" yaml:"collision"`
}

// UnmeldConfig holds settings for the unmeld operation.
type UnmeldConfig struct {
	// MeldedPath is the marked-up combined document.
	MeldedPath string `json:"melded_path" yaml:"melded_path"`

	// KeyFilePath is the index file. Empty means key_file.csv next to MeldedPath.
	KeyFilePath string `json:"key_file_path" yaml:"key_file_path"`

	// OutputDir receives one folder per submission. Empty means Unmelded/
	// next to MeldedPath.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Initials is stamped on the first page of every output; empty disables stamping.
	Initials string `json:"initials" yaml:"initials"`

	// MaxNameChars truncates output file stems (default 20).
	MaxNameChars int `json:"max_name_chars" yaml:"max_name_chars"`

	// Zip archives the output folder to <OutputDir>.zip when done.
	Zip bool `json:"zip" yaml:"zip"`

	// Collision decides what to do when an output file already exists.
	Collision CollisionPolicy `json:"collision" yaml:"collision"`
}
