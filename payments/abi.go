package payments

// filPayABI covers the Filecoin Pay calls the application makes.
const filPayABI = `[
  {"type":"function","name":"ensureAccount","stateMutability":"nonpayable","inputs":[],"outputs":[]},
  {"type":"function","name":"getBalance","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[
     {"name":"locked","type":"uint256"},
     {"name":"available","type":"uint256"},
     {"name":"obligations","type":"uint256"}]},
  {"type":"function","name":"createOrUpdateRail","stateMutability":"nonpayable",
   "inputs":[
     {"name":"payer","type":"address"},
     {"name":"payee","type":"address"},
     {"name":"maxRate","type":"uint256"},
     {"name":"lockupPeriod","type":"uint256"},
     {"name":"validator","type":"address"}],
   "outputs":[{"name":"railId","type":"bytes32"}]},
  {"type":"function","name":"settle","stateMutability":"nonpayable",
   "inputs":[{"name":"railId","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"terminate","stateMutability":"nonpayable",
   "inputs":[{"name":"railId","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"getRailInfo","stateMutability":"view",
   "inputs":[{"name":"railId","type":"bytes32"}],
   "outputs":[
     {"name":"payer","type":"address"},
     {"name":"payee","type":"address"},
     {"name":"maxRate","type":"uint256"},
     {"name":"lockupPeriod","type":"uint256"},
     {"name":"validator","type":"address"},
     {"name":"lastSettlementEpoch","type":"uint256"}]},
  {"type":"event","name":"RailCreated","anonymous":false,
   "inputs":[
     {"indexed":true,"name":"railId","type":"bytes32"},
     {"indexed":true,"name":"payer","type":"address"},
     {"indexed":true,"name":"payee","type":"address"}]},
  {"type":"event","name":"RailSettled","anonymous":false,
   "inputs":[
     {"indexed":true,"name":"railId","type":"bytes32"},
     {"indexed":false,"name":"amount","type":"uint256"},
     {"indexed":false,"name":"epoch","type":"uint256"}]},
  {"type":"event","name":"RailTerminated","anonymous":false,
   "inputs":[{"indexed":true,"name":"railId","type":"bytes32"}]}
]`
