// Command mcvm-resolve is a one-shot CLI wrapper around the resolver: given
// a list of package ids and an environment description on the command
// line, it prints the resulting lockfile to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mcvm-launcher/mcvm-sub000/internal/contentstore"
	"github.com/mcvm-launcher/mcvm-sub000/internal/lockfile"
	"github.com/mcvm-launcher/mcvm-sub000/internal/logging"
	"github.com/mcvm-launcher/mcvm-sub000/internal/pkgid"
	"github.com/mcvm-launcher/mcvm-sub000/internal/repoindex"
	"github.com/mcvm-launcher/mcvm-sub000/internal/resolver"
)

func main() {
	var (
		repoPath    = flag.String("repo", "", "local repository directory containing index.json")
		mcVersion   = flag.String("mc-version", "", "minecraft version")
		side        = flag.String("side", "client", "client|server|both")
		modloader   = flag.String("modloader", "", "modloader id")
		permission  = flag.String("permissions", "standard", "restricted|standard|elevated")
		stability   = flag.String("stability", "stable", "stable|latest")
		knownVers   = flag.String("known-versions", "", "comma-separated ordered version domain, oldest first")
		timeoutFlag = flag.Duration("timeout", 120*time.Second, "resolve timeout")
		cacheDir    = flag.String("cache-dir", "", "optional on-disk evaluation cache directory")
	)
	flag.Parse()

	ids := flag.Args()
	if *repoPath == "" || len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "usage: mcvm-resolve -repo <dir> -mc-version <v> [flags] <package-id>...")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()
	logger := logging.NewLogger("mcvm-resolve")

	repo := &repoindex.Repository{ID: "local", Kind: repoindex.KindStd, Enabled: true, Base: *repoPath}
	idx := repoindex.NewIndex(repo)
	if err := idx.SyncAll(ctx); err != nil {
		logger.Error(ctx, "failed to sync repository", logging.Err(err))
		os.Exit(1)
	}

	perm, ok := pkgid.ParsePermission(*permission)
	if !ok {
		fmt.Fprintf(os.Stderr, "invalid -permissions %q\n", *permission)
		os.Exit(2)
	}
	stab, ok := pkgid.ParseStability(*stability)
	if !ok {
		fmt.Fprintf(os.Stderr, "invalid -stability %q\n", *stability)
		os.Exit(2)
	}
	var versions []string
	if *knownVers != "" {
		versions = strings.Split(*knownVers, ",")
	} else {
		versions = []string{*mcVersion}
	}

	env := &pkgid.Environment{
		MCVersion:         *mcVersion,
		Side:              pkgid.Side(*side),
		Modloader:         *modloader,
		Permissions:       perm,
		Stability:         stab,
		Versions:          pkgid.NewVersionList(versions, nil),
		RequestedFeatures: map[string]struct{}{},
	}

	var requests []*pkgid.Request
	for _, id := range ids {
		requests = append(requests, pkgid.NewRequest(id))
	}

	runID := logging.NewRunID()
	ctx = logging.WithRunID(ctx, runID)

	r := resolver.New(idx)
	if *cacheDir != "" {
		r = r.WithStore(contentstore.New(*cacheDir))
	}
	plan, perr := r.Resolve(ctx, requests, env)
	if perr != nil {
		fmt.Fprintf(os.Stderr, "resolve failed: %s\n", perr.Error())
		os.Exit(1)
	}

	lf := lockfile.FromPlan(plan.Packages, plan.Notices, plan.Recommendations, func() string { return runID })
	out, err := lf.Marshal()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode lockfile: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
