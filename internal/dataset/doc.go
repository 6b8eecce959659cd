// Package dataset reads freight bundles from workbooks or JSON documents and
// writes packing results back out. A workbook result has two sheets: the
// bundles annotated with their bin, and a per-bin summary.
package dataset
