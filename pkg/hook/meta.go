package hook

import (
	"bytes"
	"fmt"

	"github.com/shaneholloman/prek/pkg/config"
	"github.com/shaneholloman/prek/pkg/hook/matching"
)

// Meta hooks operate on the configuration itself rather than file content.

func metaHookDefinition(id string) (config.Hook, bool) {
	switch id {
	case "check-hooks-apply":
		return config.Hook{
			ID:       id,
			Name:     "check hooks apply to the repository",
			Language: config.LanguageSystem,
		}, true
	case "check-useless-excludes":
		return config.Hook{
			ID:       id,
			Name:     "check for useless excludes",
			Language: config.LanguageSystem,
		}, true
	case "identity":
		return config.Hook{
			ID:       id,
			Name:     "identity",
			Language: config.LanguageSystem,
			Verbose:  true,
		}, true
	default:
		return config.Hook{}, false
	}
}

func (s *Scheduler) runMeta(inst *instance) (int, []byte) {
	switch inst.hook.ID {
	case "check-hooks-apply":
		return s.checkHooksApply(inst)
	case "check-useless-excludes":
		return s.checkUselessExcludes(inst)
	case "identity":
		var out bytes.Buffer
		for _, f := range inst.files {
			fmt.Fprintln(&out, f)
		}
		return 0, out.Bytes()
	default:
		return 1, []byte(fmt.Sprintf("unknown meta hook: %s", inst.hook.ID))
	}
}

// checkHooksApply asserts every configured hook would match at least one
// file of its project.
func (s *Scheduler) checkHooksApply(inst *instance) (int, []byte) {
	cfg := inst.project.Config
	matcher := matching.NewMatcher(inst.project.Path)

	allFiles, err := s.projectTrackedFiles(inst)
	if err != nil {
		return 1, []byte(err.Error())
	}

	var out bytes.Buffer
	failed := false
	for _, repo := range cfg.Repos {
		if repo.Kind() == config.KindMeta {
			continue
		}
		for _, h := range repo.Hooks {
			if h.AlwaysRun {
				continue
			}
			if len(matcher.FilesForHook(cfg, h, allFiles)) == 0 {
				failed = true
				fmt.Fprintf(&out, "%s does not apply to this repository\n", h.ID)
			}
		}
	}
	if failed {
		return 1, out.Bytes()
	}
	return 0, nil
}

// checkUselessExcludes asserts each exclude pattern actually removes
// something from its hook's matched set.
func (s *Scheduler) checkUselessExcludes(inst *instance) (int, []byte) {
	cfg := inst.project.Config
	matcher := matching.NewMatcher(inst.project.Path)

	allFiles, err := s.projectTrackedFiles(inst)
	if err != nil {
		return 1, []byte(err.Error())
	}

	var out bytes.Buffer
	failed := false

	if !cfg.Exclude.IsZero() && !excludeRemovesAnything(cfg.Exclude, allFiles) {
		failed = true
		fmt.Fprintf(&out, "the top-level exclude %q does not match any files\n", cfg.Exclude.String())
	}

	for _, repo := range cfg.Repos {
		for _, h := range repo.Hooks {
			if h.Exclude.IsZero() {
				continue
			}
			// The exclude is useless iff removing it changes nothing:
			// i.e. it excludes no file that otherwise matches the hook.
			without := h
			without.Exclude = config.Pattern{}
			matchedWithout := matcher.FilesForHook(cfg, without, allFiles)
			matchedWith := matcher.FilesForHook(cfg, h, allFiles)
			if len(matchedWithout) == len(matchedWith) {
				failed = true
				fmt.Fprintf(&out, "the exclude %q for %s does not exclude anything\n", h.Exclude.String(), h.ID)
			}
		}
	}
	if failed {
		return 1, out.Bytes()
	}
	return 0, nil
}

func excludeRemovesAnything(p config.Pattern, files []string) bool {
	for _, f := range files {
		if p.Matches(f) {
			return true
		}
	}
	return false
}

// projectTrackedFiles lists every tracked file owned by the instance's
// project, project-relative.
func (s *Scheduler) projectTrackedFiles(inst *instance) ([]string, error) {
	all, err := s.Repo.GetAllFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked files: %w", err)
	}
	wsFiles := s.toWorkspaceRelative(all)
	owned := s.Ws.AssignFiles(wsFiles, nil)[inst.project]
	return toProjectRelative(inst.project, owned), nil
}
