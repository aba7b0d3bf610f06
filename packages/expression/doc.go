// Package expression resolves $<type args> placeholders in test data.
//
// Supported markup (parts in parentheses are optional):
//
//	$<today(delta)(:format)>         current date, e.g. $<today+1M-3d:yyyy-MM-dd>
//	$<BOM...>, $<BONM...>            beginning of this or next month
//	$<BOY...>, $<BONY...>            beginning of this or next year
//	$<rx:regex>                      random string matching regex
//	$<testdata:file:path>            value or JSON block from another file
//	$<cache:step:path>               value or JSON block from an earlier response
//	$<cache_headers:step:header>     header of an earlier response
//	$<uuid>, $<random:1:9>, ...      helpers from package builtin
//
// Delta units are m (minutes), H (hours), d (days), M (months) and y (years).
// Formats use the pattern letters yyyy, MM, dd, HH, mm, ss and friends; the
// default is MM/dd/yyyy.
//
// Parse never looks up resolvers globally: callers pass the Set to use, which
// is how General, CacheMode and HeadersCacheMode run over the same text in
// separate passes.
package expression
