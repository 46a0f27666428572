// Package all imports all supported source kinds.
//
// Import this package for its side effects to register them:
//
//	import (
//		"github.com/git-pkgs/pkgindex"
//		_ "github.com/git-pkgs/pkgindex/all"
//	)
//
//	// Now all kinds are available
//	kinds := pkgindex.SupportedKinds()
//	// ["legacy", "memory"]
package all

import (
	_ "github.com/git-pkgs/pkgindex/internal/memory"
	_ "github.com/git-pkgs/pkgindex/internal/remote"
)
