// Package catalog lists the bundled WellBuilt apps and builds the URLs the
// hub uses to launch them, including the single sign-on hand-off.
//
// Opening URLs is platform work and is left to an Opener supplied by the
// host.
package catalog
