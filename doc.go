/*
Command dc2cat builds and checks the catalog inputs of DC2 image
simulations.

Contents

	Program overview
	Installing
	Command line usage
	Configuring file locations
	File formats
	Algorithm outline

# Program overview

dc2cat is a single program with one subcommand per task:

	snedb        load supernova parameter CSV files into an sqlite database
	sedgrid      build the dusted template grid used by sedfit
	sedfit       fit library SEDs and dust to the galaxies of a healpixel
	chunks       print the generator view of a catalog inside a field
	refcat       write the smeared reference catalog of a field
	trim         split an instance catalog into per-sensor catalogs
	verify-pos   check galaxy membership and positions of a visit
	verify-flux  check summed component fluxes of a visit against truth

Truth catalogs are read through catalog configs, YAML files naming a
reader subclass and its files.  The FITS healpixel reader and the
composite reader, which lines up member catalogs row by row, chunk by
chunk, are built in.

# Installing

You need Go 1.24 or later.  Type

	go install github.com/soniakeys/dc2cat@latest

The sqlite driver is pure Go; no C toolchain is needed.

# Command line usage

Type dc2cat help, or dc2cat help <subcommand>, for the flags of each
subcommand.  Global flags are

	-v, --verbose        debug logging
	    --config-dir     catalog config directory
	    --settings       YAML file of command settings

Logs are JSON lines on stderr.  Reports go to stdout.

Sample runs:

	dc2cat snedb sne_csv $SCRATCH/sne_params.db
	dc2cat sedgrid cosmoDC2_v1.1.4_image
	dc2cat sedfit cosmoDC2_v1.1.4_image 9556 -o fits
	dc2cat refcat dc2_stars -o refcat
	dc2cat trim instcats/00479028/phosim_cat_479028.txt R22_S11 "R:2,2 S:0,0"
	dc2cat verify-pos 479028 --cat-dir instcats --opsim minion_1016_desc_dithered_v4_sfd.db
	dc2cat verify-flux 479028 --cat-dir instcats --hist dmag.png

# Configuring file locations

Environment variables:

	DC2_CATALOG_CONFIG_DIR  catalog configs, unless --config-dir is given
	SIMS_SED_LIBRARY_DIR    SED library, with galaxy templates in galaxySED
	THROUGHPUTS_DIR         throughputs, with LSST bandpasses in baseline
	TWINKLES_DIR            sprinkler caches in data
	SCRATCH                 default location of the supernova database

The settings file may give

	catalog:    truth catalog name
	opsim:      OpSim database path
	sensors:    list of sensors to trim
	fov:        field radius in degrees
	tolerance:  flux tolerance in magnitudes

Flags given on the command line override the settings file.

# File formats

Instance catalogs are text.  Lines before the first object are header
commands.  An object line is

	object id ra dec magNorm sed redshift gamma1 gamma2 kappa dra ddec
	       sourceType [params] restDust [av rv] obsDust [av rv]

with ra, dec in degrees.  Lines "includeobj <file>" name further object
files, gzipped or not.  Galaxy components have unique ids of galaxy
id << 10 plus a type id.

The reference catalog is text with a "# " header of comma separated
column names: uniqueId, positions and uncertainties in degrees, smeared
positions, ugrizy magnitudes with uncertainties, smeared magnitudes,
isresolved, isvariable, proper motion and parallax in arcsec, and radial
velocity in km/s.

SED fits are a FITS binary table sed_fit, one row per galaxy, holding
galaxy_id, htmid_6, redshift, the fitted SED, magNorm per band, Av and Rv
of disk and bulge, and the cosmological magnitude corrections cosmo_u
through cosmo_y.

Template grids are gob files holding the tophats, templates, and the
rest frame tophat magnitudes of each template and dust sample.

The supernova database holds table sne_params with an index on
htmid_level_6, the level 6 HTM trixel of each supernova.

# Algorithm outline

sedfit takes the tophat luminosities of each galaxy component, finds
the nearest grid entry in color space with a k-d tree, fits the
magnitude offset, refines Av and Rv locally, then computes magNorm in
each LSST band so the redshifted, dusted template reproduces the
catalog's observed LSST luminosity.

refcat draws normal deviates from generators seeded by object type, so
a given catalog and chunk size always produce the same output.

trim projects each object gnomonically about the boresight, rotates by
the rotator angle, and writes the object to every sensor containing it
within a margin.

verify-pos selects truth galaxies within the field, compares them with
the bulge and disk catalogs, accepts catalog galaxies absent from truth
only when their magNorm marks them as trimmed, and checks angular
offsets against three reference galaxies.

verify-flux samples galaxies, sums component fluxes through the
hardware bandpass of the visit's filter, and compares the magnitude with
the truth catalog.

Public domain.
*/
package main
