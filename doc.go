// Package typegraph compiles FHIR specification releases into normalized,
// deduplicated type graphs.
//
// A release is read from the local FHIR package cache, a .tgz package or a
// directory of JSON resources. Its StructureDefinitions are built into
// classes and properties in two passes, its ValueSets and CodeSystems into
// enumerated-code entities. The resulting graph is what template renderers
// consume; rendering itself happens elsewhere.
//
// # Quick Start
//
//	gen, err := typegraph.New(
//	    typegraph.WithRelease(typegraph.R4),
//	    typegraph.WithSource("hl7.fhir.r4.core#4.0.1"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	results, err := gen.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, res := range results {
//	    for _, p := range res.Graph.WritableProfiles() {
//	        fmt.Println(p.TargetName, p.NeededExternalClasses())
//	    }
//	}
//
// # Multiple Releases
//
// Previous releases are compiled after the primary one, strictly in
// sequence, each into its own registry epoch:
//
//	gen, err := typegraph.New(
//	    typegraph.WithRelease(typegraph.R5),
//	    typegraph.WithDefaultRelease(typegraph.R5),
//	    typegraph.WithPreviousReleases(
//	        typegraph.Target{Release: typegraph.R4B},
//	        typegraph.Target{Release: typegraph.R4},
//	    ),
//	)
//
// The default release is emitted into the unqualified module path; every
// other release gets a release-suffixed namespace (see RootModulePath).
//
// # Packages
//
//   - pkg/loader: local package intake with glob include/exclude
//   - pkg/fragment: tolerant StructureDefinition decoding
//   - pkg/selector: FHIRPath fragment filter
//   - pkg/compiler: two-pass compilation into a Graph
//   - pkg/valueset: ValueSet and CodeSystem compilation
//   - pkg/manifest: per-profile dependency manifest
package typegraph
