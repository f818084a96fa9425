package validation

// These MUST match the CHECK constraints in the store schema.
var (
	ValidRoles         = []string{"admin", "staff"}
	ValidExportFormats = []string{"csv", "xlsx"}
)
