/*
Package builder turns a fully expanded syntax tree into the typed model of
package ir, validating everything the code generator relies on.

By the time a tree reaches the builder it contains no variables, loops or
templates, only sections, blocks and literal properties. Construction runs in
three phases:

 1. Decoding: every section and nested block is checked against a fixed
    schema. Unknown names get a "did you mean" suggestion, duplicate
    properties and singleton blocks are rejected, and values are coerced to
    their declared type with go-cty's convert package.

 2. Cross-field validation: rules that span several properties, such as
    options that require http mode or a verify setting that needs a CA file,
    are checked once a section is decoded. The effective mode of a proxy is
    its own mode, else the mode of the nearest preceding defaults section,
    else tcp.

 3. Uniqueness and references: section, server, ACL and endpoint names are
    checked for duplicates, and names used by default_backend, use_backend,
    resolvers, peers and email alerts must resolve to declared sections.
    Reference checks can be deferred so that a multi-file build runs them
    once on the merged model (see Merge and CheckReferences).

Every problem is reported as a ValidationError diagnostic and the builder keeps
going, so one run reports the whole batch. A Config is only returned when no
errors were found.
*/
package builder
