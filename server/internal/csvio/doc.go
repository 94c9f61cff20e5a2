// Package csvio exports the machine catalog as a spreadsheet-friendly CSV
// file and imports machines back from one.
//
// The exported file starts with a UTF-8 byte order mark so that spreadsheet
// applications detect the encoding. The importer accepts files with or
// without the mark and ignores the id and score columns: every valid row
// creates a new machine.
package csvio
