package version

// Base version information.
var (
	// NOTE: The $Format strings are 'git archive' export-subst placeholders.
	// This directory has no .gitattributes file enabling export-subst, so
	// they are reported as written unless overridden at build time.
	// See also https://git-scm.com/docs/gitattributes
	gitVersion   = "v0.0.0-master+$Format:%H$"
	gitCommit    = "$Format:%H$"          // sha1 from git, output of $(git rev-parse HEAD)
	gitTreeState = ""                     // state of git tree, either "clean" or "dirty"
	buildDate    = "1970-01-01T00:00:00Z" // build date in ISO8601 format, output of $(date -u +'%Y-%m-%dT%H:%M:%SZ')
)
