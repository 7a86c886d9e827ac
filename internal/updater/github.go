package updater

import (
	"context"
	"errors"
	"fmt"

	"github.com/creativeprojects/go-selfupdate"
)

// GitHubSource reads releases of a GitHub repository.
type GitHubSource struct {
	repo    selfupdate.Repository
	updater *selfupdate.Updater
}

// NewGitHubSource creates a source for the "owner/name" repository slug.
func NewGitHubSource(slug string, prerelease bool) (*GitHubSource, error) {
	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("create GitHub source: %w", err)
	}
	up, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:     source,
		Prerelease: prerelease,
	})
	if err != nil {
		return nil, fmt.Errorf("create updater: %w", err)
	}
	return &GitHubSource{repo: selfupdate.ParseSlug(slug), updater: up}, nil
}

// Latest returns the newest release for this platform, or nil when there is none.
// Development builds treat every release as newer.
func (g *GitHubSource) Latest(ctx context.Context, current string) (*Release, error) {
	rel, found, err := g.updater.DetectLatest(ctx, g.repo)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &Release{
		Version:     rel.Version(),
		Notes:       rel.ReleaseNotes,
		URL:         rel.URL,
		PublishedAt: rel.PublishedAt,
		Size:        rel.AssetByteSize,
		Newer:       current == "dev" || rel.GreaterThan(current),
		asset:       rel,
	}, nil
}

// Install downloads rel and replaces executable with it.
func (g *GitHubSource) Install(ctx context.Context, rel *Release, executable string) error {
	asset, ok := rel.asset.(*selfupdate.Release)
	if !ok {
		return errors.New("release was not found by this source")
	}
	return g.updater.UpdateTo(ctx, asset, executable)
}
