package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/pkgindex/client"
	"github.com/git-pkgs/pkgindex/internal/core"
	"github.com/git-pkgs/pkgindex/internal/version"
)

func (c *CLI) findCommand() *cobra.Command {
	var (
		pre    bool
		source string
		latest bool
	)

	cmd := &cobra.Command{
		Use:   "find NAME [CONSTRAINT]",
		Short: "List the versions matching a dependency",
		Example: `  pkgindex find requests
  pkgindex find requests ">=2.0,<3.0"
  pkgindex find --pre --source private mylib`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			constraint := ""
			if len(args) == 2 {
				constraint = args[1]
			}
			dep, err := core.NewDependency(args[0], constraint)
			if err != nil {
				return err
			}
			dep.AllowPrereleases = pre
			dep.SourceName = source

			s, err := c.newSession(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			packages, err := s.pool.FindPackages(cmd.Context(), dep)
			if err != nil {
				return err
			}
			if len(packages) == 0 {
				c.Logger.Warn("no matching versions", "dependency", dep.String())
				return nil
			}
			if latest {
				packages = []*core.Package{core.Latest(packages)}
			}

			w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			for _, p := range packages {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.PrettyName, p.Version, p.SourceReference)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&pre, "pre", false, "allow pre-releases")
	cmd.Flags().StringVar(&source, "source", "", "only query the named repository")
	cmd.Flags().BoolVar(&latest, "latest", false, "only print the latest match")
	return cmd
}

func (c *CLI) infoCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "info NAME VERSION",
		Short: "Show release metadata and file hashes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := version.Parse(args[1]); err != nil {
				return err
			}

			s, err := c.newSession(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			p, err := s.pool.Package(cmd.Context(), args[0], args[1], nil)
			if err != nil {
				return err
			}
			view := newPackageView(p)
			if src, ok := s.pool.Source(p.SourceReference); ok {
				view.URLs = sourceURLs(src, p.Name, view.Version)
			}
			if asJSON {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			printPackage(c, view)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (c *CLI) linksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "links NAME VERSION",
		Short: "List the artifacts of a release",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := version.Parse(args[1])
			if err != nil {
				return err
			}

			s, err := c.newSession(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			pkg := core.NewPackage(args[0], v)
			found := 0
			var searched []string
			for _, src := range s.pool.Sources() {
				if index := sourceURLs(src, pkg.Name, args[1])["index"]; index != "" {
					searched = append(searched, index)
				}
				links, err := src.FindLinksForPackage(cmd.Context(), pkg)
				if err != nil {
					return fmt.Errorf("%s: %w", src.Name(), err)
				}
				for _, l := range links {
					hash := "-"
					if l.Hash != "" {
						hash = l.HashName + ":" + l.Hash
					}
					fmt.Fprintf(c.out, "%s\t%s\t%s\n", src.Name(), l.ShowURL(), hash)
					found++
				}
			}
			if found == 0 {
				c.Logger.Warn("no artifacts", "package", pkg.String(), "searched", strings.Join(searched, " "))
			}
			return nil
		},
	}
}

// packageView is the JSON shape printed by info --json.
type packageView struct {
	Name           string            `json:"name"`
	Version        string            `json:"version"`
	Source         string            `json:"source"`
	Summary        string            `json:"summary,omitempty"`
	License        string            `json:"license,omitempty"`
	RequiresPython string            `json:"requires_python,omitempty"`
	Requires       []string          `json:"requires,omitempty"`
	Files          []core.FileHash   `json:"files"`
	PURL           string            `json:"purl"`
	URLs           map[string]string `json:"urls,omitempty"`
}

// sourceURLs lists the URLs src exposes for a release, if it has any.
func sourceURLs(src core.Source, name, ver string) map[string]string {
	b, ok := src.(interface{ URLs() client.URLBuilder })
	if !ok {
		return nil
	}
	return client.BuildURLs(b.URLs(), name, ver)
}

func newPackageView(p *core.Package) packageView {
	view := packageView{
		Name:           p.PrettyName,
		Version:        p.Version.String(),
		Source:         p.SourceReference,
		Summary:        p.Description,
		License:        p.License,
		RequiresPython: p.RequiresPython,
		Files:          p.Files,
		PURL:           p.PURL(),
	}
	for _, dep := range p.Requires {
		req := dep.String()
		if dep.Markers != "" {
			req += "; " + dep.Markers
		}
		view.Requires = append(view.Requires, req)
	}
	return view
}

func printPackage(c *CLI, view packageView) {
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "name\t%s\n", view.Name)
	fmt.Fprintf(w, "version\t%s\n", view.Version)
	fmt.Fprintf(w, "source\t%s\n", view.Source)
	if view.Summary != "" {
		fmt.Fprintf(w, "summary\t%s\n", view.Summary)
	}
	if view.License != "" {
		fmt.Fprintf(w, "license\t%s\n", view.License)
	}
	if view.RequiresPython != "" {
		fmt.Fprintf(w, "requires-python\t%s\n", view.RequiresPython)
	}
	if len(view.Requires) > 0 {
		fmt.Fprintf(w, "requires\t%s\n", strings.Join(view.Requires, ", "))
	}
	fmt.Fprintf(w, "purl\t%s\n", view.PURL)
	if index := view.URLs["index"]; index != "" {
		fmt.Fprintf(w, "index\t%s\n", index)
	}
	for _, f := range view.Files {
		fmt.Fprintf(w, "file\t%s\t%s\n", f.File, f.Hash)
	}
	_ = w.Flush()
}
