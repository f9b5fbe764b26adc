// Package appimg locates, classifies, and extracts the read-only
// filesystem image embedded in an AppImage executable.
//
// An AppImage is an ELF launcher stub with a filesystem image (SquashFS
// or DwarFS) appended after the end of the ELF structural metadata. This
// package derives the image offset from the ELF section layout, detects
// the image format from its magic bytes, and presents a single entry
// model over both backends.
//
// # Quick Start
//
// Open an AppImage and locate its desktop entry:
//
//	app, err := appimg.Open("app.AppImage")
//	if err != nil {
//	    return err
//	}
//	defer app.Close()
//
//	desktop, err := app.FindDesktop("")
//	if err != nil {
//	    return err
//	}
//	if desktop != nil {
//	    err = app.Extract(*desktop, "./out")
//	}
//
// # Traversal
//
// Entries returns a lazy iterator over every entry in the image. Each
// call re-materializes the sequence from the open archive:
//
//	for e, err := range app.Entries() {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(e.Path)
//	}
//
// # DwarFS
//
// Byte-level DwarFS decoding is delegated to a codec supplied through
// [WithDwarFSCodec]; see the internal/dwfs contract. SquashFS images work
// out of the box.
package appimg
