package commands

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

//go:embed all:templates
var templateFS embed.FS

// copyTemplate copies an embedded template directory to the target path and
// returns the files it wrote. Existing files are kept unless force is set.
func copyTemplate(templateName, targetDir string, force bool) (written, skipped []string, err error) {
	root := path.Join("templates", templateName)

	err = fs.WalkDir(templateFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel := relTemplatePath(root, p)
		if rel == "" {
			return nil
		}
		targetPath := filepath.Join(targetDir, filepath.FromSlash(renameSpecialFiles(rel)))

		if d.IsDir() {
			return os.MkdirAll(targetPath, 0750)
		}

		if !force {
			if _, err := os.Stat(targetPath); err == nil {
				skipped = append(skipped, renameSpecialFiles(rel))
				return nil
			}
		}

		content, err := templateFS.ReadFile(p)
		if err != nil {
			return err
		}
		if err := os.WriteFile(targetPath, content, 0600); err != nil {
			return err
		}
		written = append(written, renameSpecialFiles(rel))
		return nil
	})

	return written, skipped, err
}

// relTemplatePath returns p relative to root, "" for root itself.
func relTemplatePath(root, p string) string {
	if p == root {
		return ""
	}
	return p[len(root)+1:]
}

// renameSpecialFiles handles files that need renaming (dotfiles can't be
// shipped under their real name).
func renameSpecialFiles(p string) string {
	dir, base := path.Split(p)

	switch base {
	case "gitignore":
		return dir + ".gitignore"
	case "env":
		return dir + ".env"
	default:
		return p
	}
}
