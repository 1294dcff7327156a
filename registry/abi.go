package registry

// registryABI is the DatasetRegistry contract interface.
const registryABI = `[
  {"type":"function","name":"registerDataset","stateMutability":"nonpayable",
   "inputs":[
     {"name":"_name","type":"string"},
     {"name":"_description","type":"string"},
     {"name":"_cid","type":"string"},
     {"name":"_price","type":"uint256"},
     {"name":"_isVerified","type":"bool"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"processPayment","stateMutability":"nonpayable",
   "inputs":[
     {"name":"_tokenId","type":"uint256"},
     {"name":"_amount","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"getDataset","stateMutability":"view",
   "inputs":[{"name":"_tokenId","type":"uint256"}],
   "outputs":[{"name":"","type":"tuple","internalType":"struct DatasetRegistry.Dataset",
     "components":[
       {"name":"name","type":"string"},
       {"name":"description","type":"string"},
       {"name":"cid","type":"string"},
       {"name":"price","type":"uint256"},
       {"name":"isVerified","type":"bool"}]}]},
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"ownerOf","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[{"name":"","type":"address"}]},
  {"type":"event","name":"DatasetRegistered","anonymous":false,
   "inputs":[
     {"indexed":true,"name":"tokenId","type":"uint256"},
     {"indexed":false,"name":"name","type":"string"},
     {"indexed":false,"name":"cid","type":"string"},
     {"indexed":false,"name":"price","type":"uint256"},
     {"indexed":false,"name":"isVerified","type":"bool"}]},
  {"type":"event","name":"PaymentProcessed","anonymous":false,
   "inputs":[
     {"indexed":true,"name":"tokenId","type":"uint256"},
     {"indexed":true,"name":"buyer","type":"address"},
     {"indexed":false,"name":"amount","type":"uint256"}]}
]`
